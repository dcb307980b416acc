package config

// WorkerKeyStruct names the Redis lists shared by the sweeper and the
// auto-submit consumer.
type WorkerKeyStruct struct {
	// AutoSubmitQueue holds JSON payloads of expired attempts waiting to be scored.
	AutoSubmitQueue string
}

var WorkerKey = &WorkerKeyStruct{
	AutoSubmitQueue: "auto_submit_queue",
}
