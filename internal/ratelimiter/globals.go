package ratelimiter

const (
	KeyFeed    = "feed"
	KeyArticle = "article"
	KeyOpenAI  = "openai"
	KeyEmotion = "emotion"
)
