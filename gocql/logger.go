package gocql

import "log"

type StdLogger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// Logger is the package-level default used when a ClusterConfig doesn't
// set its own; StdLogger's method set matches transport.Logger exactly,
// so it's passed straight through without a wrapper.
var Logger StdLogger = log.Default()
