package types

// ICEServer mirrors the browser RTCIceServer shape.
type ICEServer struct {
	URLs []string `json:"urls"`
}

// SessionResp is the relay's answer to POST /session: a short-lived realtime
// credential and the model it is bound to.
type SessionResp struct {
	SessionID    string      `json:"session_id"`
	ClientSecret string      `json:"client_secret"`
	Model        string      `json:"model"`
	ExpiresAt    int64       `json:"expires_at"`
	ICEServers   []ICEServer `json:"ice_servers"`
}

type AnswerReq struct {
	Question string `json:"question" binding:"required"`
}

type AnswerResp struct {
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
}

type HealthResp struct {
	Status            string `json:"status"`
	ActiveCredentials int    `json:"active_credentials"`
}

type ErrorResp struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}
