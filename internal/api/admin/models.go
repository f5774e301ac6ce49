package admin

import (
	"strings"

	"github.com/region23/testdrive/internal/storage/models"
)

// CarRequest тело POST и PUT /cars
type CarRequest struct {
	Model       string `json:"model"`
	Description string `json:"description"`
}

// ToModel нормализует пробелы и собирает модель хранилища
func (r CarRequest) ToModel(id int64) *models.Car {
	return &models.Car{
		ID:          id,
		Model:       strings.TrimSpace(r.Model),
		Description: strings.TrimSpace(r.Description),
	}
}
