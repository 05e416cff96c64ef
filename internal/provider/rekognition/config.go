package rekognition

import "time"

// Config holds configuration for the AWS Rekognition provider
type Config struct {
	// Region is the AWS region where Rekognition will be called (e.g., "us-east-1")
	Region string

	// MinConfidence drops detections below this percentage (0-100)
	MinConfidence float32

	// Timeout bounds a single DetectFaces call
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		MinConfidence: 90,
		Timeout:       10 * time.Second,
	}
}
