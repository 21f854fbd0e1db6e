package scheduler

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const DefaultWindowDays = 7

// Job is one scheduled harvest from the jobs file.
type Job struct {
	Name       string `yaml:"name"`
	Query      string `yaml:"query"`
	Spec       string `yaml:"spec"`
	WindowDays int    `yaml:"window_days,omitempty"`
	OutputDir  string `yaml:"output_dir,omitempty"`
	OnlyNew    bool   `yaml:"only_new,omitempty"`
	// Analyze runs every stage after the harvest.
	Analyze bool `yaml:"analyze,omitempty"`
}

type jobsFile struct {
	Jobs []Job `yaml:"jobs"`
}

func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	jobs, err := ParseJobs(data)
	if err != nil {
		return nil, fmt.Errorf("parse jobs file (path = %s): %w", path, err)
	}

	return jobs, nil
}

// ParseJobs decodes and validates a jobs document, filling defaults.
func ParseJobs(data []byte) ([]Job, error) {
	var file jobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if len(file.Jobs) == 0 {
		return nil, errors.New("no jobs defined")
	}

	var errs []error
	names := make(map[string]struct{}, len(file.Jobs))

	for i := range file.Jobs {
		job := &file.Jobs[i]
		job.Name = strings.TrimSpace(job.Name)
		job.Query = strings.TrimSpace(job.Query)
		job.Spec = strings.TrimSpace(job.Spec)

		if job.Name == "" {
			errs = append(errs, fmt.Errorf("job %d: name is empty", i+1))
			continue
		}
		if _, ok := names[job.Name]; ok {
			errs = append(errs, fmt.Errorf("job %q: duplicate name", job.Name))
		}
		names[job.Name] = struct{}{}

		if job.Query == "" {
			errs = append(errs, fmt.Errorf("job %q: query is empty", job.Name))
		}
		if _, err := cron.ParseStandard(job.Spec); err != nil {
			errs = append(errs, fmt.Errorf("job %q: parse spec: %w", job.Name, err))
		}
		if job.WindowDays < 0 {
			errs = append(errs, fmt.Errorf("job %q: window_days is negative", job.Name))
		}

		if job.WindowDays == 0 {
			job.WindowDays = DefaultWindowDays
		}
		if job.OutputDir == "" {
			job.OutputDir = "output"
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return file.Jobs, nil
}
