package services

import "solana-gif-portal/internal/models"

// DeriveScreen picks the screen for a session and list state
func DeriveScreen(session models.Session, list models.ListState) models.Screen {
	switch {
	case !session.Connected:
		return models.ScreenConnect
	case list.Status == models.ListUninitialized:
		return models.ScreenInitialize
	case list.Status == models.ListLoading:
		return models.ScreenLoading
	default:
		return models.ScreenGrid
	}
}
