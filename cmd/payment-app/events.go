package main

import (
	ws "github.com/saleorbridge/payment-bridge/internal/websocket"
)

// EventEmitter pushes processing and configuration events to the WebSocket
// hub. A nil receiver or nil hub drops events silently so the migration CLI
// path and tests need no hub.
type EventEmitter struct {
	hub *ws.Hub
}

// NewEventEmitter creates a new event emitter
func NewEventEmitter(hub *ws.Hub) *EventEmitter {
	return &EventEmitter{hub: hub}
}

// EmitWebhookProcessed emits a successful webhook processing event
func (e *EventEmitter) EmitWebhookProcessed(event, result string, amount float64, currency, pspReference string) {
	if e == nil || e.hub == nil {
		return
	}

	e.hub.BroadcastEvent(ws.TypeWebhook, ws.EventWebhookProcessed, ws.WebhookData{
		EventType:    event,
		Result:       result,
		Amount:       amount,
		Currency:     currency,
		PSPReference: pspReference,
	})
}

// EmitWebhookFailed emits a failed webhook processing event
func (e *EventEmitter) EmitWebhookFailed(event, message string) {
	if e == nil || e.hub == nil {
		return
	}

	e.hub.BroadcastEvent(ws.TypeWebhook, ws.EventWebhookFailed, ws.WebhookData{
		EventType:    event,
		ErrorMessage: message,
	})
}

// EmitEntryAdded emits a configuration entry created event
func (e *EventEmitter) EmitEntryAdded(configurationID, name, domain string) {
	if e == nil || e.hub == nil {
		return
	}

	e.hub.BroadcastEvent(ws.TypeConfiguration, ws.EventEntryAdded, ws.ConfigurationData{
		ConfigurationID:   configurationID,
		ConfigurationName: name,
		Tenant:            domain,
	})
}

// EmitEntryUpdated emits a configuration entry updated event
func (e *EventEmitter) EmitEntryUpdated(configurationID, name, domain string) {
	if e == nil || e.hub == nil {
		return
	}

	e.hub.BroadcastEvent(ws.TypeConfiguration, ws.EventEntryUpdated, ws.ConfigurationData{
		ConfigurationID:   configurationID,
		ConfigurationName: name,
		Tenant:            domain,
	})
}

// EmitEntryDeleted emits a configuration entry deleted event
func (e *EventEmitter) EmitEntryDeleted(configurationID, domain string) {
	if e == nil || e.hub == nil {
		return
	}

	e.hub.BroadcastEvent(ws.TypeConfiguration, ws.EventEntryDeleted, ws.ConfigurationData{
		ConfigurationID: configurationID,
		Tenant:          domain,
	})
}

// EmitMappingUpdated emits a channel mapping change event
func (e *EventEmitter) EmitMappingUpdated(channelID, configurationID, domain string) {
	if e == nil || e.hub == nil {
		return
	}

	e.hub.BroadcastEvent(ws.TypeConfiguration, ws.EventMappingUpdated, ws.ConfigurationData{
		ChannelID:       channelID,
		ConfigurationID: configurationID,
		Tenant:          domain,
	})
}
