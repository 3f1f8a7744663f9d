package syncclient

import "context"

// Platform abstracts the device runtime the agent runs on. A simulator or an
// emulator without push services reports SupportsRemotePush false and still
// gets local alerts through the polling loop.
type Platform interface {
	// RequestPermission asks the user for local-notification permission.
	RequestPermission(ctx context.Context) (bool, error)

	// SupportsRemotePush reports whether the runtime can receive remote
	// pushes at all.
	SupportsRemotePush() bool

	// DevicePushToken acquires the device's push token. Only called when
	// SupportsRemotePush is true.
	DevicePushToken(ctx context.Context) (string, error)

	// PresentAlert shows a local notification banner.
	PresentAlert(title, body string)
}
