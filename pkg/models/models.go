// Package models defines the fleet records shared by the repository, the
// services and the HTTP API.
package models

import (
	"time"
)

// Tenant is an organisation whose users share a fleet.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Domain    string    `json:"domain" db:"domain"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// VesselStatus represents the operational status of a vessel
type VesselStatus string

const (
	VesselStatusActive      VesselStatus = "active"
	VesselStatusMaintenance VesselStatus = "maintenance"
	VesselStatusDocked      VesselStatus = "docked"
	VesselStatusRetired     VesselStatus = "retired"
)

// Vessel is a ship operated by a tenant.
type Vessel struct {
	ID          string       `json:"id" db:"id"`
	TenantID    string       `json:"tenant_id" db:"tenant_id"`
	Name        string       `json:"name" db:"name"`
	VesselType  string       `json:"vessel_type" db:"vessel_type"`
	IMONumber   *string      `json:"imo_number,omitempty" db:"imo_number"`
	Status      VesselStatus `json:"status" db:"status"`
	EngineHours float64      `json:"engine_hours" db:"engine_hours"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// CrewStatus represents whether a crew member can be rostered
type CrewStatus string

const (
	CrewStatusActive   CrewStatus = "active"
	CrewStatusOnLeave  CrewStatus = "on_leave"
	CrewStatusInactive CrewStatus = "inactive"
)

// CrewMember is a seafarer employed by a tenant.
type CrewMember struct {
	ID               string     `json:"id" db:"id"`
	TenantID         string     `json:"tenant_id" db:"tenant_id"`
	Name             string     `json:"name" db:"name"`
	Role             string     `json:"role" db:"role"`
	Certifications   []string   `json:"certifications" db:"certifications"`
	Status           CrewStatus `json:"status" db:"status"`
	AssignedVesselID *string    `json:"assigned_vessel_id,omitempty" db:"assigned_vessel_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Available reports whether the crew member is active and unassigned.
func (c CrewMember) Available() bool {
	return c.Status == CrewStatusActive && c.AssignedVesselID == nil
}

// CreateVesselRequest represents a request to register a vessel
type CreateVesselRequest struct {
	Name        string       `json:"name" validate:"required,max=200"`
	VesselType  string       `json:"vessel_type" validate:"required,max=100"`
	IMONumber   *string      `json:"imo_number,omitempty" validate:"omitempty,len=7,numeric"`
	Status      VesselStatus `json:"status,omitempty" validate:"omitempty,oneof=active maintenance docked retired"`
	EngineHours float64      `json:"engine_hours" validate:"gte=0"`
}

// CreateCrewMemberRequest represents a request to add a crew member
type CreateCrewMemberRequest struct {
	Name           string     `json:"name" validate:"required,max=200"`
	Role           string     `json:"role" validate:"required,max=100"`
	Certifications []string   `json:"certifications,omitempty" validate:"dive,required"`
	Status         CrewStatus `json:"status,omitempty" validate:"omitempty,oneof=active on_leave inactive"`
}

// AssignCrewRequest assigns a crew member to a vessel. A nil VesselID
// releases the crew member.
type AssignCrewRequest struct {
	VesselID *string `json:"vessel_id" validate:"omitempty,uuid"`
}
