// services/consts/consts.go
package consts

// Topic tokens
const (
	TokConfig  = "config"
	TokButton  = "button"
	TokGesture = "gesture"
	TokDisplay = "display"
	TokState   = "state"
	TokService = "service"
	TokInfo    = "info"
)

// Config sections published as config/<section>
const (
	SecServer    = "server"
	SecStrip     = "strip"
	SecDisplay   = "display"
	SecButton    = "button"
	SecWebhook   = "webhook"
	SecMQTT      = "mqtt"
	SecHeartbeat = "heartbeat"
	SecLog       = "log"
)

// Service levels
const (
	LevelStarting = "starting"
	LevelRunning  = "running"
	LevelStopped  = "stopped"
)
