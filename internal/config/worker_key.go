package config

type WorkerKeyStruct struct {
	AnswerSnapshotsQueue    string
	SubmissionReceiptsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	AnswerSnapshotsQueue:    "answer_snapshots_queue",
	SubmissionReceiptsQueue: "submission_receipts_queue",
}
