package hooks

// HookConfig describes how to call an external hook endpoint.
type HookConfig struct {
	URL        string            `yaml:"url"         json:"url"`
	AuthType   string            `yaml:"auth_type"   json:"auth_type"`   // "bearer", "hmac", "none"
	AuthSecret string            `yaml:"auth_secret" json:"auth_secret"` // token or HMAC key
	TimeoutSec int               `yaml:"timeout_sec" json:"timeout_sec"`
	Headers    map[string]string `yaml:"headers"     json:"headers,omitempty"`
}

// Hook events.
const (
	EventExchange = "exchange"
	EventAnimate  = "animate"
)

// HookRequest is the payload sent to a hook endpoint.
type HookRequest struct {
	SessionID  string            `json:"session_id"`
	Event      string            `json:"event"`
	Turn       int64             `json:"turn,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
	Transcript string            `json:"transcript,omitempty"`
	Reply      string            `json:"reply,omitempty"`
	AudioPath  string            `json:"audio_path,omitempty"`
	ImagePath  string            `json:"image_path,omitempty"`
}

// HookResponse is the expected response from a hook endpoint.
type HookResponse struct {
	Variables map[string]string `json:"variables,omitempty"`
	Data      map[string]any    `json:"data,omitempty"`
	VideoPath string            `json:"video_path,omitempty"`
}
