package config

type WorkerKeyStruct struct {
	PersistAnswersQueue  string
	PersistWarningsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:  "persist_answers_queue",
	PersistWarningsQueue: "persist_warnings_queue",
}
