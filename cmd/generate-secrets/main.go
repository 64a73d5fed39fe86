package main

import (
	"fmt"
	"log"

	"github.com/otelcore/booking-backend/internal/utils"
)

func main() {
	accessSecret, refreshSecret, offerSecret, err := utils.GenerateSigningSecrets()
	if err != nil {
		log.Fatalf("Failed to generate signing secrets: %v", err)
	}

	fmt.Println("Add these to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", accessSecret)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", refreshSecret)
	fmt.Printf("OFFER_SECRET=%s\n", offerSecret)
	fmt.Println()
	fmt.Println("Never commit these values to version control.")
}
