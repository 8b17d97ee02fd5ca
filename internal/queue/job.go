package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator"
)

// ErrInvalidJob marks messages that can never succeed. They skip the retry
// queue.
var ErrInvalidJob = errors.New("invalid extraction job")

// ExtractJob asks the worker to extract one text. Exactly one of Text,
// S3Key and URL is set.
type ExtractJob struct {
	RunID string `json:"run_id" validate:"required"`
	Text  string `json:"text,omitempty"`
	S3Key string `json:"s3_key,omitempty"`
	URL   string `json:"url,omitempty" validate:"omitempty,url"`
}

var jobValidator = validator.New()

// Validate checks the job shape.
func (j *ExtractJob) Validate() error {
	if err := jobValidator.Struct(j); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	set := 0
	for _, s := range []string{j.Text, j.S3Key, j.URL} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: exactly one of text, s3_key and url must be set", ErrInvalidJob)
	}
	return nil
}

// Source names the kind of input the job carries.
func (j *ExtractJob) Source() string {
	switch {
	case j.URL != "":
		return "web"
	case j.S3Key != "":
		return "s3"
	}
	return "text"
}

// DecodeExtractJob parses and validates a message body.
func DecodeExtractJob(body []byte) (ExtractJob, error) {
	var job ExtractJob
	if err := json.Unmarshal(body, &job); err != nil {
		return ExtractJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if err := job.Validate(); err != nil {
		return ExtractJob{}, err
	}
	return job, nil
}
