package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/festhive-otp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, identity, code string) error {
	return m.Called(ctx, identity, code).Error(0)
}

func TestLog_WritesCode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, l.Send(context.Background(), "a@x.io", "123456"))
	assert.Contains(t, buf.String(), "identity=a@x.io")
	assert.Contains(t, buf.String(), "code=123456")
}

func TestRouter_ByChannel(t *testing.T) {
	email := new(mockNotifier)
	sms := new(mockNotifier)
	email.On("Send", mock.Anything, "a@x.io", "111111").Return(nil).Once()
	sms.On("Send", mock.Anything, "+14155550100", "222222").Return(nil).Once()

	r := NewRouter(email, sms)
	require.NoError(t, r.Send(context.Background(), "a@x.io", "111111"))
	require.NoError(t, r.Send(context.Background(), "+14155550100", "222222"))

	email.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestRouter_Unsupported(t *testing.T) {
	tests := []struct {
		name     string
		router   *Router
		identity string
	}{
		{"unknown kind", NewRouter(new(mockNotifier), new(mockNotifier)), "not-an-identity"},
		{"sms disabled", NewRouter(new(mockNotifier), nil), "+14155550100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.router.Send(context.Background(), tt.identity, "123456")
			assert.ErrorIs(t, err, domain.ErrUnsupportedIdentity)
		})
	}
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	n := new(mockNotifier)
	n.On("Send", mock.Anything, "a@x.io", "123456").Return(errors.New("421 try later")).Twice()
	n.On("Send", mock.Anything, "a@x.io", "123456").Return(nil).Once()

	err := WithRetry(n, 3, time.Millisecond).Send(context.Background(), "a@x.io", "123456")
	require.NoError(t, err)
	n.AssertNumberOfCalls(t, "Send", 3)
}

func TestWithRetry_GivesUp(t *testing.T) {
	boom := errors.New("connection refused")
	n := new(mockNotifier)
	n.On("Send", mock.Anything, "a@x.io", "123456").Return(boom)

	err := WithRetry(n, 2, time.Millisecond).Send(context.Background(), "a@x.io", "123456")
	assert.ErrorIs(t, err, boom)
	n.AssertNumberOfCalls(t, "Send", 3)
}

func TestWithRetry_DoesNotRetryUnsupported(t *testing.T) {
	n := new(mockNotifier)
	n.On("Send", mock.Anything, "x", "123456").Return(domain.ErrUnsupportedIdentity)

	err := WithRetry(n, 3, time.Millisecond).Send(context.Background(), "x", "123456")
	assert.ErrorIs(t, err, domain.ErrUnsupportedIdentity)
	n.AssertNumberOfCalls(t, "Send", 1)
}

func TestWithRetry_ZeroIsPassthrough(t *testing.T) {
	n := new(mockNotifier)
	assert.Same(t, n, WithRetry(n, 0, time.Millisecond))
}
