package config

type QueueKeyStruct struct {
	SecurityLogQueue string
}

var QueueKey = &QueueKeyStruct{
	SecurityLogQueue: "persist_security_logs_queue",
}
