package logger

import "github.com/sirupsen/logrus"

// Context is a set of log fields carried alongside a unit of work, such as one experiment.
type Context logrus.Fields

// Fields converts the context for use with logrus.WithFields.
func (c Context) Fields() logrus.Fields {
	return logrus.Fields(c)
}

// Entry returns a logrus entry carrying the context.
func (c Context) Entry() *logrus.Entry {
	return logrus.WithFields(c.Fields())
}

// MergeContexts returns a new merged Context object from the inputs, preferring later inputs.
func MergeContexts(xs ...Context) Context {
	ys := Context{}
	for _, x := range xs {
		for k, v := range x {
			ys[k] = v
		}
	}
	return ys
}
