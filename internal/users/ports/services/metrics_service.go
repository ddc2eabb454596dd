package services

// MetricsRecorder фиксирует события жизненного цикла учетных записей.
type MetricsRecorder interface {
	UserRegistered()
	UserCreated()
	UserActivated()
	PasswordResetRequested()
	PasswordResetCompleted()
	PasswordChanged()
	UserDeleted()
	NotActivatedUsersRemoved(count int)
	AuditEventsRemoved(count int64)
}
