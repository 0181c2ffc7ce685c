package domain

import "errors"

var (
	// ErrEntryNotFound — для дня или id нет записи календаря.
	ErrEntryNotFound = errors.New("запись календаря не найдена")
	// ErrDayTaken — день уже занят другой записью.
	ErrDayTaken = errors.New("день уже занят другой записью")
	// ErrDayOutOfRange — номер дня вне диапазона календаря.
	ErrDayOutOfRange = errors.New("номер дня вне диапазона календаря")
	// ErrDoorLocked — дверь ещё закрыта для пользователя.
	ErrDoorLocked = errors.New("дверь ещё закрыта")
	// ErrCommentNotFound — комментарий не найден.
	ErrCommentNotFound = errors.New("комментарий не найден")
	// ErrForbidden — недостаточно прав.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("некорректные данные")
	// ErrBusy — операция уже выполняется другим администратором.
	ErrBusy = errors.New("операция уже выполняется")
	// ErrNothingToExport — в календаре нет записей.
	ErrNothingToExport = errors.New("нет записей для экспорта")
	// ErrUpstream — внешний сервис вернул ошибку.
	ErrUpstream = errors.New("ошибка внешнего сервиса")
	// ErrRateLimited — внешний сервис ограничил частоту запросов.
	ErrRateLimited = errors.New("превышен лимит запросов к внешнему сервису")
	// ErrCreditsExhausted — закончились кредиты внешнего сервиса.
	ErrCreditsExhausted = errors.New("закончились кредиты внешнего сервиса")
	// ErrUnsupportedMedia — тип файла не поддерживается.
	ErrUnsupportedMedia = errors.New("неподдерживаемый тип файла")
)
