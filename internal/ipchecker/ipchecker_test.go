package ipchecker

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
		wantErr    bool
	}{
		{
			name:       "x-real-ip wins",
			headers:    map[string]string{"X-Real-IP": "10.0.0.7", "X-Forwarded-For": "10.0.0.8"},
			remoteAddr: "192.0.2.1:1234",
			expected:   "10.0.0.7",
		},
		{
			name:       "first forwarded entry",
			headers:    map[string]string{"X-Forwarded-For": " 10.0.0.8 , 10.0.0.9"},
			remoteAddr: "192.0.2.1:1234",
			expected:   "10.0.0.8",
		},
		{
			name:       "garbage forwarded entry falls back to remote address",
			headers:    map[string]string{"X-Forwarded-For": "unknown"},
			remoteAddr: "192.0.2.1:1234",
			expected:   "192.0.2.1",
		},
		{
			name:       "remote address",
			remoteAddr: "[::1]:80",
			expected:   "::1",
		},
		{
			name:       "broken remote address",
			remoteAddr: "nonsense",
			wantErr:    true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.RemoteAddr = test.remoteAddr
			for key, value := range test.headers {
				request.Header.Set(key, value)
			}

			ip, err := ClientIP(request)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, net.ParseIP(test.expected).Equal(ip))
		})
	}
}

func TestTrustedOnly(t *testing.T) {
	checker, err := New("10.0.0.0/8")
	require.NoError(t, err)
	handler := checker.TrustedOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Real-IP", "10.1.2.3")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)

	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Real-IP", "192.168.1.1")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.JSONEq(t, `{"message":"Unauthorized access"}`, recorder.Body.String())

	empty, err := New("")
	require.NoError(t, err)
	assert.True(t, empty.IsTrustedSubnetEmpty())
	assert.False(t, empty.Check(net.ParseIP("10.1.2.3")))

	_, err = New("10.0.0.0/99")
	assert.Error(t, err)
}
