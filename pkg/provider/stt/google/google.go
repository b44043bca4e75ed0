// Package google provides an STT provider backed by Google Cloud Speech-to-Text
// (v1 synchronous Recognize). Authentication uses Application Default
// Credentials unless a credentials file or API key option is supplied.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/sanduabey/zen/pkg/provider/stt"
	"github.com/sanduabey/zen/pkg/types"
)

const (
	defaultLanguage   = "en-US"
	defaultSampleRate = 48000
)

// recognizeFunc issues one synchronous recognition request.
type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)

// noRetry replaces the client's default Recognize retryer, which re-sends on
// Unavailable and DeadlineExceeded. Failures surface to the caller on the
// first attempt.
var noRetry = gax.WithRetry(func() gax.Retryer { return nil })

// Provider implements stt.Provider using Google Cloud Speech-to-Text.
type Provider struct {
	client     *speech.Client
	recognize  recognizeFunc
	language   string
	model      string
	sampleRate int32
}

var _ stt.Provider = (*Provider)(nil)

type config struct {
	language   string
	model      string
	sampleRate int32
	clientOpts []option.ClientOption
}

// Option is a functional option for Provider.
type Option func(*config)

// WithLanguage sets the BCP-47 recognition language. Defaults to "en-US".
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithModel selects a recognition model (e.g. "latest_short", "command_and_search").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithSampleRate sets the sample rate declared for Opus recordings. Browser and
// portaudio recorders both produce 48 kHz Opus.
func WithSampleRate(hz int) Option {
	return func(c *config) {
		c.sampleRate = int32(hz)
	}
}

// WithCredentialsFile authenticates with a service-account JSON key file.
func WithCredentialsFile(path string) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, option.WithCredentialsFile(path))
	}
}

// WithAPIKey authenticates with a Google Cloud API key.
func WithAPIKey(key string) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, option.WithAPIKey(key))
	}
}

// WithEndpoint overrides the Speech API endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, option.WithEndpoint(endpoint))
	}
}

// New dials the Speech API. The returned Provider must be closed.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := &config{
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(cfg)
	}

	client, err := speech.NewClient(ctx, cfg.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("google: create speech client: %w", err)
	}
	p := newWithRecognizer(client.Recognize, cfg)
	p.client = client
	return p, nil
}

func newWithRecognizer(fn recognizeFunc, cfg *config) *Provider {
	return &Provider{
		recognize:  fn,
		language:   cfg.language,
		model:      cfg.model,
		sampleRate: cfg.sampleRate,
	}
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Transcribe sends the recording inline and joins the top alternative of each
// result. Containers Speech v1 cannot decode (mp4, aac) are rejected before any
// request is made.
func (p *Provider) Transcribe(ctx context.Context, a types.Audio) (stt.Transcript, error) {
	if a.Empty() {
		return stt.Transcript{}, errors.New("google: audio is empty")
	}
	enc, err := recognitionEncoding(a.BaseMIMEType())
	if err != nil {
		return stt.Transcript{}, err
	}

	rc := &speechpb.RecognitionConfig{
		Encoding:                   enc,
		SampleRateHertz:            p.sampleRate,
		LanguageCode:               p.language,
		EnableAutomaticPunctuation: true,
	}
	if p.model != "" {
		rc.Model = p.model
	}

	resp, err := p.recognize(ctx, &speechpb.RecognizeRequest{
		Config: rc,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: a.Data},
		},
	}, noRetry)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("google: recognize: %w", err)
	}
	return buildTranscript(resp), nil
}

// recognitionEncoding maps a base MIME type to the Speech v1 encoding enum.
func recognitionEncoding(mime string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch mime {
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "audio/wav", "audio/x-wav", "audio/flac", "audio/mpeg", "audio/mp3":
		// Header-bearing formats are auto-detected.
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, nil
	default:
		return 0, fmt.Errorf("google: unsupported audio type %q", mime)
	}
}

func buildTranscript(resp *speechpb.RecognizeResponse) stt.Transcript {
	var (
		parts []string
		conf  float64
		n     int
		tr    stt.Transcript
	)
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if txt := strings.TrimSpace(alts[0].GetTranscript()); txt != "" {
			parts = append(parts, txt)
			conf += float64(alts[0].GetConfidence())
			n++
		}
		if tr.Language == "" {
			tr.Language = r.GetLanguageCode()
		}
	}
	tr.Text = strings.Join(parts, " ")
	if n > 0 {
		tr.Confidence = conf / float64(n)
	}
	if d := resp.GetTotalBilledTime(); d != nil {
		tr.Duration = d.AsDuration()
	}
	return tr
}
