package config

type WorkerKeyStruct struct {
	PersistAnalysisQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnalysisQueue: "persist_analysis_queue",
}
