package repository

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUserNotFound = errors.New("user not found")
	ErrToolNotFound = errors.New("tool not found")
	ErrBlogNotFound = errors.New("blog not found")
	ErrAlreadyLiked = errors.New("blog already liked")
	ErrNotLiked     = errors.New("blog not liked")
)
