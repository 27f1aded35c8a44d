package app

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("Invalid email or password")

	ErrRegistrationFieldsRequired = errors.New("Name, email, and password are required")
	ErrLoginFieldsRequired        = errors.New("Email and password are required")
	ErrEmailRegistered            = errors.New("Email is already registered")
	ErrPasswordTooShort           = errors.New("Password must be at least 6 characters")

	ErrSellerNotFound        = errors.New("User not found")
	ErrProfileFieldsRequired = errors.New("Name and email are required")
	ErrEmailTaken            = errors.New("Email is already taken by another user")

	ErrBookFieldsRequired = errors.New("Title, price, and stock are required")
	ErrBookNotEditable    = errors.New("Book not found or you do not have permission to edit it")
	ErrBookNotDeletable   = errors.New("Book not found or you do not have permission to delete it")

	ErrCoverStorageDisabled = errors.New("cover storage is not configured")
	ErrCoverTypeUnsupported = errors.New("cover must be a .jpg, .jpeg, .png or .webp image")

	ErrSeedQueueDisabled = errors.New("seed queue is not configured")
	ErrSeedJobNotFound   = errors.New("seed job not found")
)
