package models

import (
	"github.com/smazurov/relaynode/internal/logging"
	"github.com/smazurov/relaynode/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"Relay hardware reachable" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionResponse struct {
	Body version.Info
}

// Relay models
type RelayData struct {
	ID      string `json:"id" example:"fence_lighting" doc:"Identifier used in relay API paths"`
	Name    string `json:"name" example:"Fence lighting" doc:"Human readable name"`
	Ordinal int    `json:"ordinal" example:"0" doc:"Position in the layout; bit (ordinal % 8) of word (ordinal / 8)"`
	Pin     int    `json:"pin,omitempty" example:"17" doc:"BCM line for directly wired layouts"`
	Enabled bool   `json:"enabled" example:"false" doc:"Whether the relay is energised"`
}

type RelaysData struct {
	Layout string      `json:"layout" example:"gpio" doc:"Active relay layout"`
	Relays []RelayData `json:"relays" doc:"Relays in ordinal order"`
}

type RelaysResponse struct {
	Body RelaysData
}

type RelayInput struct {
	ID string `path:"id" example:"free" doc:"Relay identifier"`
}

type RelayResponse struct {
	Body RelayData
}

// Hardware models
type TransportData struct {
	Name     string `json:"name" example:"expander@0x20" doc:"Transport name"`
	Written  string `json:"written" example:"0xfe" doc:"Last word written"`
	Readback string `json:"readback" example:"0xfe" doc:"Word read back from the device"`
	InSync   bool   `json:"in_sync" example:"true" doc:"Readback matches the last write"`
}

type HardwareData struct {
	Transports []TransportData `json:"transports" doc:"One entry per control word"`
}

type HardwareResponse struct {
	Body HardwareData
}

// Log models
type LogsInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Maximum number of entries, newest last"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Recent log entries"`
}

type LogsResponse struct {
	Body LogsData
}
