// Package reporter forwards unexpected failures to an external error reporting service.
package reporter

//go:generate mockgen -destination mock_reporter/reporter.go . Reporter

type Context = map[string]any

// Reporter is implemented by the embedding application, e.g. to send crash reports.
type Reporter interface {
	ReportException(any) error
	ReportMessage(string) error
	ReportMessageWithContext(string, Context) error
	ReportExceptionWithContext(any, Context) error
}

// NullReporter drops everything.
type NullReporter struct{}

func (NullReporter) ReportException(any) error {
	return nil
}

func (NullReporter) ReportMessage(string) error {
	return nil
}

func (NullReporter) ReportMessageWithContext(string, Context) error {
	return nil
}

func (NullReporter) ReportExceptionWithContext(any, Context) error {
	return nil
}
