package routing

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/providers"
)

var testCfg = Config{MaxTokens: 400, Temperature: 0.5, AttemptTimeout: 100 * time.Millisecond, MediaTimeout: 100 * time.Millisecond}

func reply(text string) providers.CompletionFunc {
	return func(context.Context, string, string, int, float64) (string, error) { return text, nil }
}

func fail(msg string) providers.CompletionFunc {
	return func(context.Context, string, string, int, float64) (string, error) { return "", errors.New(msg) }
}

func hang() providers.CompletionFunc {
	return func(ctx context.Context, _, _ string, _ int, _ float64) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
}

func req(text string) model.CompletionRequest {
	return model.CompletionRequest{Identity: "u1", Text: text, SystemContext: "sys"}
}

func TestComplete_PrimarySuccessSkipsSecondary(t *testing.T) {
	var secondaryCalls atomic.Int32
	r := NewRouter([]Attempt{
		{Name: "primary", Provider: reply("from primary")},
		{Name: "secondary", Provider: providers.CompletionFunc(func(context.Context, string, string, int, float64) (string, error) {
			secondaryCalls.Add(1)
			return "from secondary", nil
		})},
	}, nil, nil, testCfg, zerolog.Nop())

	res := r.Complete(context.Background(), req("hi"))
	require.NoError(t, res.Err)
	assert.Equal(t, "from primary", res.Text)
	assert.Equal(t, "primary", res.Provider)
	assert.Zero(t, secondaryCalls.Load())
}

func TestComplete_FallbackCases(t *testing.T) {
	cases := map[string]providers.CompletionProvider{
		"error":   fail("boom"),
		"timeout": hang(),
		"empty":   reply("   "),
		"panic": providers.CompletionFunc(func(context.Context, string, string, int, float64) (string, error) {
			panic("adapter bug")
		}),
	}
	for name, primary := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewRouter([]Attempt{
				{Name: "primary", Provider: primary},
				{Name: "secondary", Provider: reply("from secondary")},
			}, nil, nil, testCfg, zerolog.Nop())

			res := r.Complete(context.Background(), req("hi"))
			require.NoError(t, res.Err)
			assert.Equal(t, "from secondary", res.Text)
			assert.Equal(t, "secondary", res.Provider)
		})
	}
}

func TestComplete_DoubleFailure(t *testing.T) {
	r := NewRouter([]Attempt{
		{Name: "primary", Provider: fail("a")},
		{Name: "secondary", Provider: hang()},
	}, nil, nil, testCfg, zerolog.Nop())

	start := time.Now()
	res := r.Complete(context.Background(), req("hi"))
	assert.ErrorIs(t, res.Err, model.ErrAllProvidersFailed)
	assert.Empty(t, res.Text)
	assert.Less(t, time.Since(start), time.Second, "worst case is bounded by the attempt timeouts")
}

func TestComplete_NoAttempts(t *testing.T) {
	r := NewRouter(nil, nil, nil, testCfg, zerolog.Nop())
	assert.ErrorIs(t, r.Complete(context.Background(), req("hi")).Err, model.ErrAllProvidersFailed)
}

func TestComplete_PassesFixedParameters(t *testing.T) {
	type call struct {
		system, user string
		maxTokens    int
		temp         float64
	}
	calls := make(chan call, 2)
	rec := providers.CompletionFunc(func(_ context.Context, s, u string, n int, temp float64) (string, error) {
		calls <- call{s, u, n, temp}
		return "", errors.New("fail to force the second attempt")
	})
	r := NewRouter([]Attempt{{Name: "a", Provider: rec}, {Name: "b", Provider: rec}}, nil, nil, testCfg, zerolog.Nop())
	_ = r.Complete(context.Background(), req("question"))

	for i := 0; i < 2; i++ {
		c := <-calls
		assert.Equal(t, "sys", c.system)
		assert.Equal(t, "question", c.user)
		assert.Equal(t, 400, c.maxTokens)
		assert.InDelta(t, 0.5, c.temp, 1e-9)
	}
}

func TestComplete_CallerCancelDoesNotAbortAttempt(t *testing.T) {
	slow := providers.CompletionFunc(func(ctx context.Context, _, _ string, _ int, _ float64) (string, error) {
		select {
		case <-time.After(20 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	r := NewRouter([]Attempt{{Name: "p", Provider: slow}}, nil, nil, testCfg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Complete(ctx, req("hi"))
	require.NoError(t, res.Err)
	assert.Equal(t, "done", res.Text)
}

func TestGenerateMedia_VideoNormalisesToLast(t *testing.T) {
	for name, tc := range map[string]struct {
		out  []string
		want string
	}{
		"single":   {[]string{"https://v/only.mp4"}, "https://v/only.mp4"},
		"sequence": {[]string{"https://v/1.mp4", "https://v/2.mp4", "https://v/3.mp4"}, "https://v/3.mp4"},
	} {
		t.Run(name, func(t *testing.T) {
			video := providers.VideoFunc(func(_ context.Context, prompt string) ([]string, error) {
				assert.Equal(t, "a cat surfing", prompt)
				return tc.out, nil
			})
			r := NewRouter(nil, video, nil, testCfg, zerolog.Nop())
			res, err := r.GenerateMedia(context.Background(), model.MediaVideo, "a cat surfing")
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.URL)
			assert.Equal(t, model.MediaVideo, res.Kind)
		})
	}
}

func TestGenerateMedia_ImageAsDataURL(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	image := providers.ImageFunc(func(context.Context, string) ([]byte, error) { return png, nil })
	r := NewRouter(nil, nil, image, testCfg, zerolog.Nop())

	res, err := r.GenerateMedia(context.Background(), model.MediaImage, "sunset")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.URL, "data:image/png;base64,"), res.URL)
}

func TestGenerateMedia_Failures(t *testing.T) {
	cases := map[string]*Router{
		"video error": NewRouter(nil, providers.VideoFunc(func(context.Context, string) ([]string, error) {
			return nil, errors.New("upstream 500")
		}), nil, testCfg, zerolog.Nop()),
		"video empty": NewRouter(nil, providers.VideoFunc(func(context.Context, string) ([]string, error) {
			return nil, nil
		}), nil, testCfg, zerolog.Nop()),
		"video timeout": NewRouter(nil, providers.VideoFunc(func(ctx context.Context, _ string) ([]string, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), nil, testCfg, zerolog.Nop()),
		"not configured": NewRouter(nil, nil, nil, testCfg, zerolog.Nop()),
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.GenerateMedia(context.Background(), model.MediaVideo, "x")
			assert.ErrorIs(t, err, model.ErrMediaFailed)
			assert.NotErrorIs(t, err, model.ErrAllProvidersFailed)
		})
	}

	r := NewRouter(nil, nil, providers.ImageFunc(func(context.Context, string) ([]byte, error) { return nil, nil }), testCfg, zerolog.Nop())
	_, err := r.GenerateMedia(context.Background(), model.MediaImage, "x")
	assert.ErrorIs(t, err, model.ErrMediaFailed)
}

func TestLast(t *testing.T) {
	_, ok := Last([]int(nil))
	assert.False(t, ok)
	v, ok := Last([]int{7})
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	v, _ = Last([]int{1, 2, 3})
	assert.Equal(t, 3, v)
}
