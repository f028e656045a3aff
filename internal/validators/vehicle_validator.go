package validators

import (
	"regexp"
	"strings"
	"time"

	"ridehail/internal/models"

	"github.com/go-playground/validator/v10"
)

// MaxVehicleAgeYears is the oldest vehicle a driver may register.
const MaxVehicleAgeYears = 20

var platePattern = regexp.MustCompile(`^[A-Z0-9]{5,10}$`)

func init() {
	validate.RegisterValidation("license_plate", validateLicensePlate)
}

type vehicleInput struct {
	Make  string `json:"make" validate:"required,min=2,max=50"`
	Model string `json:"model" validate:"required,min=1,max=50"`
	Color string `json:"color" validate:"required,min=3,max=30"`
	Plate string `json:"plate" validate:"required,license_plate"`
	Year  int    `json:"year" validate:"omitempty,min=1980"`
}

// NormalizePlate upper-cases the plate and drops spaces and dashes.
func NormalizePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	return strings.NewReplacer(" ", "", "-", "").Replace(plate)
}

// ValidateVehicle checks a driver's vehicle descriptor, normalising the
// plate in place.
func ValidateVehicle(vehicle *models.Vehicle) ValidationErrors {
	if vehicle == nil {
		return ValidationErrors{{Field: "vehicle", Tag: "required", Message: "vehicle is required"}}
	}
	vehicle.Plate = NormalizePlate(vehicle.Plate)

	errs := ValidateStruct(&vehicleInput{
		Make:  strings.TrimSpace(vehicle.Make),
		Model: strings.TrimSpace(vehicle.Model),
		Color: strings.TrimSpace(vehicle.Color),
		Plate: vehicle.Plate,
		Year:  vehicle.Year,
	})

	if vehicle.Year != 0 {
		currentYear := time.Now().Year()
		if vehicle.Year > currentYear+1 {
			errs = append(errs, ValidationError{
				Field:   "year",
				Tag:     "max",
				Message: "vehicle year cannot be more than 1 year in the future",
			})
		} else if currentYear-vehicle.Year > MaxVehicleAgeYears {
			errs = append(errs, ValidationError{
				Field:   "year",
				Tag:     "max_age",
				Message: "vehicle is too old for ride-hailing",
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateLicensePlate(fl validator.FieldLevel) bool {
	return platePattern.MatchString(fl.Field().String())
}
