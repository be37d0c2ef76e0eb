package models

// ClientFeaturesResponse tells clients which optional features the server
// currently offers. Clients hide the matching UI when a gate is off.
type ClientFeaturesResponse struct {
	VideoCalls   bool `json:"video_calls"`
	GroupChats   bool `json:"group_chats"`
	Registration bool `json:"registration"`
}
