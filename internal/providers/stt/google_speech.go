package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	Language     string
	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context, language string) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeech{
		c:            c,
		Language:     language,
		SampleRateHz: 48000,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// encodingFor maps the browser MediaRecorder MIME types to recognizer
// encodings. Unknown types fall back to WEBM_OPUS, the MediaRecorder default.
func encodingFor(contentType string) speechpb.RecognitionConfig_AudioEncoding {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	switch strings.TrimSpace(ct) {
	case "audio/wav", "audio/x-wav", "audio/l16":
		return speechpb.RecognitionConfig_LINEAR16
	case "audio/ogg", "application/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "audio/flac":
		return speechpb.RecognitionConfig_FLAC
	default:
		return speechpb.RecognitionConfig_WEBM_OPUS
	}
}

func (g *GoogleSpeech) Transcribe(ctx context.Context, media []byte, contentType string) (string, float64, error) {
	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encodingFor(contentType),
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               g.Language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: media},
		},
	})
	if err != nil {
		return "", 0, err
	}

	var full strings.Builder
	var bestConf float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(alt.Transcript)
		if float64(alt.Confidence) > bestConf {
			bestConf = float64(alt.Confidence)
		}
	}

	return full.String(), bestConf, nil
}
