package storage

import "errors"

var (
	// ErrNotFound - запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate - запись с таким ключом уже существует.
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict - условие обновления перестало выполняться к моменту записи.
	ErrConflict = errors.New("update condition not met")
)
