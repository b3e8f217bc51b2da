package job

import "github.com/gridwise/carbonsched/internal/apperror"

const defaultCarbonThreshold = 400

type CreateJobRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"durationMinutes"`
	PowerDrawWatts  int    `json:"powerDrawWatts"`
	Priority        int    `json:"priority"`
	CarbonThreshold int    `json:"carbonThreshold"`
}

func (r CreateJobRequest) Validate() *apperror.AppError {
	if r.Name == "" {
		return apperror.New(apperror.BadRequest, "job name is required")
	}
	if r.DurationMinutes <= 0 {
		return apperror.New(apperror.BadRequest, "durationMinutes must be positive")
	}
	if r.PowerDrawWatts <= 0 {
		return apperror.New(apperror.BadRequest, "powerDrawWatts must be positive")
	}
	if r.Priority < 1 || r.Priority > 5 {
		return apperror.New(apperror.BadRequest, "priority must be between 1 and 5")
	}
	if r.CarbonThreshold < 0 {
		return apperror.New(apperror.BadRequest, "carbonThreshold cannot be negative")
	}
	return nil
}

type GetJobRequest struct {
	ID string
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if r.ID == "" {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}
