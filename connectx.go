// Package connectx provides a Go SDK for the ConnectX customer-engagement backend.
//
// The SDK tracks session events, identifies customers, opens support tickets,
// creates custom object records and resolves the backend-assigned anonymous id.
//
// Basic usage:
//
//	client, err := connectx.NewClient(connectx.WithEnv("staging"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Initialize(ctx, connectx.Credentials{
//	    Token:          os.Getenv("CONNECTX_TOKEN"),
//	    OrganizationID: os.Getenv("CONNECTX_ORGANIZATION_ID"),
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	client.Track(connectx.TrackingEvent{Name: "open app"})
//
// Tracking, identify and open-ticket calls are fire-and-forget: they are queued
// and delivered in submission order by a single background dispatcher, and
// transport failures are logged rather than returned. CreateRecord and
// UnknownID wait for the backend and return typed errors.
package connectx

// Version is the SDK version.
const Version = "0.1.0"

// Event names emitted by the lifecycle helpers.
const (
	EventOpenApp      = "open app"
	EventAppPause     = "app pause"
	EventAppResume    = "app resume"
	EventGetUnknownID = "get unknownId"
)
