package core

// error_messages.go maps technical errors to Turkish user messages with codes
// for support reference. Users quote the code; support looks it up here.
//
// # Format Errors (FMT)
//
//	FMT001 - Unrecognized layout: the column count matches no accepted layout
//	FMT002 - Exam type mismatch: declared and detected exam types differ
//	FMT003 - Unsupported file: not xlsx, xls or delimited text
//	FMT004 - Empty sheet: the file has no rows
//	FMT005 - Unknown exam type declared
//
// # Import Errors (IMP)
//
//	IMP001 - Exam not found in the school
//	IMP002 - No importable rows were selected
//	IMP003 - A new student's class could not be resolved
//
// # Upload Errors (UPL)
//
//	UPL001 - Too many imports running
//	UPL002 - Request cancelled
//	UPL003 - Request timed out
//
// # File Errors (FILE)
//
//	FILE001 - File too large
//	FILE002 - No file in the request
//
// # Database Errors (DB)
//
//	DB001 - Unique constraint violated
//	DB002 - Foreign key violated
//	DB003 - Database unreachable
//	DB004 - Database timeout
//	DB005 - Deadlock
//	DB006 - No database connection available in time
//
// # Other
//
//	RATE001 - Rate limited
//	ERR000  - Unknown error; check the logs for the technical error
//
// Sentinel errors are matched first with errors.Is. Everything else falls back
// to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/sheet"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened
	Action  string `json:"action"`           // What to do about it
	Code    string `json:"code"`             // Error code for support reference
	Detail  string `json:"detail,omitempty"` // Technical detail safe to show, if any
}

type sentinelMessage struct {
	err      error
	msg      UserMessage
	verbatim bool // show err.Error() as Detail
}

var sentinelMessages = []sentinelMessage{
	{
		err: ErrUnrecognizedLayout,
		msg: UserMessage{
			Message: "Dosya düzeni tanınmadı",
			Action:  "Sütun sayısının kabul edilen şablonlardan biriyle eşleştiğini kontrol edin",
			Code:    "FMT001",
		},
		verbatim: true,
	},
	{
		err: ErrExamTypeMismatch,
		msg: UserMessage{
			Message: "Dosyanın sınav türü seçilen sınavla uyuşmuyor",
			Action:  "Doğru sınavı seçin veya doğru sonuç dosyasını yükleyin",
			Code:    "FMT002",
		},
		verbatim: true,
	},
	{
		err: sheet.ErrUnsupportedFormat,
		msg: UserMessage{
			Message: "Dosya biçimi desteklenmiyor",
			Action:  "Dosyayı .xlsx, .xls veya .csv olarak kaydedip tekrar yükleyin",
			Code:    "FMT003",
		},
	},
	{
		err: sheet.ErrEmpty,
		msg: UserMessage{
			Message: "Dosya boş",
			Action:  "Öğrenci satırları içeren bir dosya yükleyin",
			Code:    "FMT004",
		},
	},
	{
		err: layout.ErrUnknownExamType,
		msg: UserMessage{
			Message: "Sınav türü tanınmadı",
			Action:  "Sınav türü olarak LGS, TYT veya AYT seçin",
			Code:    "FMT005",
		},
		verbatim: true,
	},
	{
		err: ErrExamNotFound,
		msg: UserMessage{
			Message: "Sınav bulunamadı",
			Action:  "Sınavın bu okula ait olduğunu kontrol edin",
			Code:    "IMP001",
		},
		verbatim: true,
	},
	{
		err: ErrNothingToImport,
		msg: UserMessage{
			Message: "Aktarılacak satır seçilmedi",
			Action:  "En az bir geçerli satır seçin",
			Code:    "IMP002",
		},
	},
	{
		err: ErrClassUnresolved,
		msg: UserMessage{
			Message: "Yeni öğrencinin sınıfı belirlenemedi",
			Action:  "Satırdaki sınıf bilgisini \"12-B\" biçiminde düzenleyin",
			Code:    "IMP003",
		},
		verbatim: true,
	},
	{
		err: ErrTooManyImports,
		msg: UserMessage{
			Message: "Sistem şu anda başka aktarımları işliyor",
			Action:  "Lütfen biraz bekleyip tekrar deneyin",
			Code:    "UPL001",
		},
	},
	{
		err: context.Canceled,
		msg: UserMessage{
			Message: "İstek iptal edildi",
			Action:  "Lütfen tekrar deneyin",
			Code:    "UPL002",
		},
	},
	{
		err: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "İstek zaman aşımına uğradı",
			Action:  "Daha küçük bir dosya deneyin veya daha sonra tekrar deneyin",
			Code:    "UPL003",
		},
	},
	{
		err: ErrFileTooLarge,
		msg: UserMessage{
			Message: "Dosya izin verilen boyutu aşıyor",
			Action:  "Dosyayı bölerek yükleyin",
			Code:    "FILE001",
		},
		verbatim: true,
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered specific before general.
var errorPatterns = []errorPattern{
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "Dosya seçilmedi",
			Action:  "Yüklemek için bir sonuç dosyası seçin",
			Code:    "FILE002",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "Aynı kayıt zaten mevcut",
			Action:  "Dosyadaki tekrar eden öğrenci numaralarını kontrol edin",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "Aynı kayıt zaten mevcut",
			Action:  "Dosyadaki tekrar eden öğrenci numaralarını kontrol edin",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Bağlı kayıt bulunamadı",
			Action:  "Sınavın ve okulun hâlâ mevcut olduğunu kontrol edin",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Veritabanına bağlanılamadı",
			Action:  "Birkaç dakika sonra tekrar deneyin",
			Code:    "DB003",
		},
	},
	{
		pattern: "statement timeout",
		msg: UserMessage{
			Message: "Veritabanı işlemi zaman aşımına uğradı",
			Action:  "Daha küçük bir dosya deneyin veya daha sonra tekrar deneyin",
			Code:    "DB004",
		},
	},
	{
		pattern: "canceling statement",
		msg: UserMessage{
			Message: "Veritabanı işlemi zaman aşımına uğradı",
			Action:  "Daha küçük bir dosya deneyin veya daha sonra tekrar deneyin",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Veritabanı çakışan işlemlerle meşgul",
			Action:  "Lütfen tekrar deneyin",
			Code:    "DB005",
		},
	},
	{
		pattern: "waiting for a database connection",
		msg: UserMessage{
			Message: "Veritabanı şu anda yoğun",
			Action:  "Birkaç dakika sonra tekrar deneyin",
			Code:    "DB006",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Çok fazla istek gönderildi",
			Action:  "Lütfen biraz bekleyip tekrar deneyin",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "Beklenmeyen bir hata oluştu",
	Action:  "Tekrar deneyin veya destek ekibiyle iletişime geçin",
	Code:    "ERR000",
}

// MapError converts a technical error to a user message. Sentinels are
// checked first, then substring patterns; anything else is ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			msg := sm.msg
			if sm.verbatim {
				msg.Detail = err.Error()
			}
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a display string: "Message (Kod: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Kod: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
