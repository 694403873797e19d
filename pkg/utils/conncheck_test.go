package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		path string
		tls  bool
		want string
	}{
		{
			name: "tls", host: "scherm.azckamp.nl", port: 443, path: "/ws", tls: true,
			want: "wss://scherm.azckamp.nl:443/ws",
		},
		{
			name: "plain", host: "localhost", port: 8080, path: "/ws", tls: false,
			want: "ws://localhost:8080/ws",
		},
		{
			name: "missing leading slash", host: "localhost", port: 80, path: "ws", tls: false,
			want: "ws://localhost:80/ws",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WebsocketURL(tt.host, tt.port, tt.path, tt.tls))
		})
	}
}

func TestExtractFromWebsocketURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantAddr  string
		wantProto string
	}{
		{
			name: "with port", url: "ws://localhost:8080/ws",
			wantAddr: "localhost:8080", wantProto: "ws",
		},
		{
			name: "wss default port", url: "wss://scherm.azckamp.nl/ws",
			wantAddr: "scherm.azckamp.nl:443", wantProto: "wss",
		},
		{
			name: "ws default port", url: "ws://example.com/ws",
			wantAddr: "example.com:80", wantProto: "ws",
		},
		{
			name: "not a websocket url", url: "http://example.com/",
			wantAddr: "", wantProto: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, proto := ExtractFromWebsocketURL(tt.url)
			assert.Equal(t, tt.wantAddr, addr)
			assert.Equal(t, tt.wantProto, proto)
		})
	}
}
