package stt

import "context"

type Provider interface {
	// Transcribe converts a recorded answer into text. contentType is the MIME
	// type of the captured media and selects the recognizer encoding.
	Transcribe(ctx context.Context, media []byte, contentType string) (text string, confidence float64, err error)
	Close() error
}
