// Package mqtt is the broker transport behind the session manager.
//
// It wraps paho.mqtt.golang and exposes every operation as a token the
// event loop polls, so nothing here blocks a tick. Reconnection policy
// belongs to the session manager: paho's own auto-reconnect and connect
// retry are switched off.
//
// # Status topic
//
// The node announces itself on <topic_prefix>/status with retained JSON
// payloads:
//
//	{"status":"online","client_id":"glnode-node-01","timestamp":"..."}
//
// A Last Will with status "offline" and reason "unexpected_disconnect"
// covers crashes and link loss. Close publishes a graceful offline status
// first. Heartbeats republish the online status.
//
// # Inbound messages
//
// Messages on subscribed topics are copied into a buffered channel read by
// the event loop. When the channel is full the message is dropped and
// counted; paho callback goroutines never wait on the loop.
//
// # Usage
//
//	tr := mqtt.New(cfg.MQTT, cfg.StatusTopic())
//	mgr := session.NewManager(tr, func() bool { return sup.Status().Connected() }, sessionCfg)
//	defer tr.Close()
package mqtt
