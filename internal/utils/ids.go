package utils

import (
	"github.com/google/uuid"
)

func NewRandomID() string {
	return uuid.New().String()
}

func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
