// Package ui implements the terminal watch screen for live server
// discovery.
//
// The screen is a Bubble Tea program that polls the discovery facade's
// snapshot on a fixed interval, so additions and removals processed by
// the background event pump show up without rescanning.
package ui
