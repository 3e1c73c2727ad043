package validator

import (
	"strings"
	"testing"
	"time"

	"reservio/pkg/model"
)

const (
	testResourceID = "65f0a1b2c3d4e5f6a7b8c9d0"
	testUserID     = "65f0a1b2c3d4e5f6a7b8c9d1"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func newTestValidator() *ReservationValidator {
	return NewReservationValidator(30*time.Minute, 4*time.Hour).WithClock(fixedClock)
}

func validReservation(start time.Time, duration time.Duration) *model.Reservation {
	return &model.Reservation{
		ResourceID: testResourceID,
		UserID:     testUserID,
		StartTime:  start,
		EndTime:    start.Add(duration),
		Status:     model.ReservationStatusActive,
	}
}

func TestValidate(t *testing.T) {
	now := fixedClock()

	tests := []struct {
		name        string
		reservation *model.Reservation
		wantErr     string
	}{
		{
			name:        "valid one hour reservation",
			reservation: validReservation(now.Add(time.Hour), time.Hour),
		},
		{
			name:        "exactly minimum duration",
			reservation: validReservation(now.Add(time.Hour), 30*time.Minute),
		},
		{
			name:        "exactly maximum duration",
			reservation: validReservation(now.Add(time.Hour), 4*time.Hour),
		},
		{
			name:        "below minimum duration",
			reservation: validReservation(now.Add(time.Hour), 29*time.Minute),
			wantErr:     "at least",
		},
		{
			name:        "above maximum duration",
			reservation: validReservation(now.Add(time.Hour), 4*time.Hour+time.Minute),
			wantErr:     "not exceed",
		},
		{
			name:        "start in the past",
			reservation: validReservation(now.Add(-time.Hour), time.Hour),
			wantErr:     "future",
		},
		{
			name:        "start exactly now is rejected",
			reservation: validReservation(now, time.Hour),
			wantErr:     "future",
		},
		{
			name: "end before start",
			reservation: &model.Reservation{
				ResourceID: testResourceID,
				UserID:     testUserID,
				StartTime:  now.Add(2 * time.Hour),
				EndTime:    now.Add(time.Hour),
				Status:     model.ReservationStatusActive,
			},
			wantErr: "after",
		},
		{
			name: "missing resource id",
			reservation: &model.Reservation{
				UserID:    testUserID,
				StartTime: now.Add(time.Hour),
				EndTime:   now.Add(2 * time.Hour),
				Status:    model.ReservationStatusActive,
			},
			wantErr: "ResourceID",
		},
		{
			name: "malformed resource id",
			reservation: &model.Reservation{
				ResourceID: "not-an-object-id",
				UserID:     testUserID,
				StartTime:  now.Add(time.Hour),
				EndTime:    now.Add(2 * time.Hour),
				Status:     model.ReservationStatusActive,
			},
			wantErr: "ObjectID",
		},
		{
			name: "unknown status",
			reservation: &model.Reservation{
				ResourceID: testResourceID,
				UserID:     testUserID,
				StartTime:  now.Add(time.Hour),
				EndTime:    now.Add(2 * time.Hour),
				Status:     "pending",
			},
			wantErr: "Status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestValidator().Validate(tt.reservation)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}

			got := errorDetail(err)
			if !strings.Contains(got, tt.wantErr) {
				t.Errorf("error %q does not contain %q", got, tt.wantErr)
			}
		})
	}
}

func TestValidateWindow(t *testing.T) {
	now := fixedClock()

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{
			name:  "future window",
			start: now.Add(time.Hour),
			end:   now.Add(2 * time.Hour),
		},
		{
			name:  "past window is allowed",
			start: now.Add(-2 * time.Hour),
			end:   now.Add(-time.Hour),
		},
		{
			name:    "zero times",
			wantErr: true,
		},
		{
			name:    "end equals start",
			start:   now,
			end:     now,
			wantErr: true,
		},
		{
			name:    "too short",
			start:   now,
			end:     now.Add(10 * time.Minute),
			wantErr: true,
		},
		{
			name:    "too long",
			start:   now,
			end:     now.Add(5 * time.Hour),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestValidator().ValidateWindow(tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWindow() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// errorDetail flattens ValidationErrors into a single searchable string.
func errorDetail(err error) string {
	if verrs, ok := err.(ValidationErrors); ok {
		var parts []string
		for _, ve := range verrs {
			parts = append(parts, ve.Error())
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
