package domain

import "fmt"

const (
	LoginSucceededText = "Login successful"
	LoggedOutText      = "You are now offline"
	KickedText         = "You have been removed by the administrator"
	ShutdownText       = "The server is shutting down"
)

func NameTakenText(name string) string {
	return fmt.Sprintf("The name %q is already taken, please choose another one", name)
}

func JoinedText(name string) string {
	return fmt.Sprintf("%s joined the chat", name)
}

func LeftText(name string) string {
	return fmt.Sprintf("%s left the chat", name)
}

func KickedNoticeText(name string) string {
	return fmt.Sprintf("%s was removed by the administrator", name)
}

// Departure describes a member that is no longer registered and the notice sent to the others.
type Departure struct {
	Name   string
	Notice string
}

func LeftDeparture(name string) Departure {
	return Departure{Name: name, Notice: LeftText(name)}
}

func KickedDeparture(name string) Departure {
	return Departure{Name: name, Notice: KickedNoticeText(name)}
}
