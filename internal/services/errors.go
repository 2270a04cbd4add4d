package services

import "errors"

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrMemberNotFound  = errors.New("member not found in channel")
	ErrMemberExists    = errors.New("member already exists in channel")
	ErrOwnerMismatch   = errors.New("uid does not match the channel owner")
)
