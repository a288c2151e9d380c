// Package pipelineerr implements the single tagged-variant error type that every
// pipeline stage raises on failure: a code, a category, a retryability flag, and
// an optional wrapped cause.
package pipelineerr

import (
	"fmt"

	"go.uber.org/zap"
)

// Category classifies an Error for HTTP mapping and persistence.
type Category string

const (
	CategoryBusiness Category = "business_error"
	CategoryClient   Category = "client_error"
	CategoryServer   Category = "server_error"
)

// Code enumerates the authoritative error-code catalog (spec §6).
type Code string

const (
	// Business
	CodeFIOMismatch      Code = "FIO_MISMATCH"
	CodeFIOMissing       Code = "FIO_MISSING"
	CodeDocTypeUnknown   Code = "DOC_TYPE_UNKNOWN"
	CodeMultipleDocTypes Code = "MULTIPLE_DOC_TYPES"
	CodeDocDateMissing   Code = "DOC_DATE_MISSING"
	CodeDocDateTooOld    Code = "DOC_DATE_TOO_OLD"

	// Client
	CodeValidationError      Code = "VALIDATION_ERROR"
	CodePDFTooManyPages      Code = "PDF_TOO_MANY_PAGES"
	CodeUnsupportedMediaType Code = "UNSUPPORTED_MEDIA_TYPE"
	CodePayloadTooLarge      Code = "PAYLOAD_TOO_LARGE"
	CodeResourceNotFound     Code = "RESOURCE_NOT_FOUND"
	CodeMultipleDocuments    Code = "MULTIPLE_DOCUMENTS"

	// Server
	CodeOCRFailed            Code = "OCR_FAILED"
	CodeOCREmptyPages        Code = "OCR_EMPTY_PAGES"
	CodeOCRTimeout           Code = "OCR_TIMEOUT"
	CodeLLMFailed            Code = "LLM_FAILED"
	CodeLLMTimeout           Code = "LLM_TIMEOUT"
	CodeLLMFilterParseError  Code = "LLM_FILTER_PARSE_ERROR"
	CodeDTCFailed            Code = "DTC_FAILED"
	CodeDTCParseError        Code = "DTC_PARSE_ERROR"
	CodeExtractFailed        Code = "EXTRACT_FAILED"
	CodeExtractSchemaInvalid Code = "EXTRACT_SCHEMA_INVALID"
	CodeS3Error              Code = "S3_ERROR"
	CodeFileSaveFailed       Code = "FILE_SAVE_FAILED"
	CodeValidationFailed     Code = "VALIDATION_FAILED"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRequestTimeout       Code = "REQUEST_TIMEOUT"
	CodeInternalError        Code = "INTERNAL_ERROR"
)

// messages holds the localized Russian display text per code. Missing entries
// fall back to the code itself.
var messages = map[Code]string{
	CodeFIOMismatch:          "ФИО не совпадает с данными документа",
	CodeFIOMissing:           "ФИО в документе не распознано",
	CodeDocTypeUnknown:       "Тип документа не определён",
	CodeMultipleDocTypes:     "Документ содержит несколько типов",
	CodeDocDateMissing:       "Дата документа не распознана",
	CodeDocDateTooOld:        "Срок действия документа истёк",
	CodeValidationError:      "Ошибка валидации запроса",
	CodePDFTooManyPages:      "Документ содержит слишком много страниц",
	CodeUnsupportedMediaType: "Неподдерживаемый тип файла",
	CodePayloadTooLarge:      "Файл превышает допустимый размер",
	CodeResourceNotFound:     "Исходный файл не найден",
	CodeMultipleDocuments:    "Файл содержит несколько документов",
	CodeOCRFailed:            "Ошибка сервиса распознавания текста",
	CodeOCREmptyPages:        "Не удалось распознать текст документа",
	CodeOCRTimeout:           "Превышено время ожидания распознавания",
	CodeLLMFailed:            "Ошибка сервиса анализа документа",
	CodeLLMTimeout:           "Превышено время ожидания анализа документа",
	CodeLLMFilterParseError:  "Не удалось разобрать ответ сервиса анализа",
	CodeDTCFailed:            "Не удалось определить тип документа",
	CodeDTCParseError:        "Ошибка разбора ответа классификации документа",
	CodeExtractFailed:        "Не удалось извлечь данные документа",
	CodeExtractSchemaInvalid: "Некорректная структура извлечённых данных",
	CodeS3Error:              "Ошибка хранилища файлов",
	CodeFileSaveFailed:       "Не удалось сохранить файл",
	CodeValidationFailed:     "Ошибка проверки документа",
	CodeServiceUnavailable:   "Сервис временно недоступен",
	CodeRequestTimeout:       "Превышено время обработки запроса",
	CodeInternalError:        "Внутренняя ошибка сервиса",
}

// Error is the tagged-variant pipeline failure. A single type, rather than a
// catalog of one struct per code, because every stage needs the same four
// fields to drive HTTP mapping, persistence, and logging.
type Error struct {
	Code      Code
	Category  Category
	Retryable bool
	Cause     error

	// RetryAfter, when non-zero, holds the upstream Retry-After seconds. It is
	// not copied into verify.Result, so HTTP responses carry no Retry-After
	// header.
	RetryAfter int

	logger *zap.Logger
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message(), e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message())
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match on code rather than pointer identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Message returns the localized Russian display text for the error's code.
func (e *Error) Message() string {
	return MessageFor(e.Code)
}

// MessageFor returns the localized Russian display text for code, used to
// render the validator's bare error-code list (spec §6) without an Error
// wrapper.
func MessageFor(code Code) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return string(code)
}

// SetLogger attaches a logger so callers deep in a call chain can log
// consistently without threading one through every return value.
func (e *Error) SetLogger(logger *zap.Logger) {
	e.logger = logger
}

// New constructs a pipeline Error of the given code/category/retryability,
// wrapping cause (which may be nil).
func New(code Code, category Category, retryable bool, cause error) *Error {
	return &Error{Code: code, Category: category, Retryable: retryable, Cause: cause}
}

// Business is a convenience constructor for CategoryBusiness failures, which
// are never retryable and never carry a transport-level cause.
func Business(code Code) *Error {
	return &Error{Code: code, Category: CategoryBusiness, Retryable: false}
}

// Client is a convenience constructor for CategoryClient failures.
func Client(code Code, cause error) *Error {
	return &Error{Code: code, Category: CategoryClient, Retryable: false, Cause: cause}
}

// Server is a convenience constructor for CategoryServer failures.
func Server(code Code, retryable bool, cause error) *Error {
	return &Error{Code: code, Category: CategoryServer, Retryable: retryable, Cause: cause}
}

// WithRetryAfter returns e with RetryAfter set, for chaining at the raise site.
func (e *Error) WithRetryAfter(seconds int) *Error {
	e.RetryAfter = seconds
	return e
}

// As extracts a *Error from err, mirroring the teacher's errors.As helper.
func As(err error) (*Error, bool) {
	var pe *Error
	for err != nil {
		if p, ok := err.(*Error); ok {
			pe = p
			return pe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}
