// Package system provides the process-wide error-report facade and the
// detached launcher used by the process runtime.
//
// A Reporter is installed once at startup with Init and removed with Reset.
// Until then the default reporter logs through the logger package. Its
// Abort exits the process with status 1.
//
//	system.Init(myReporter)
//	defer system.Reset()
package system
