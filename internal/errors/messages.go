package errors

import "vidgate/pkg/contracts/domain"

// Supported message languages.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
)

var messages = map[string]map[string]string{
	LangEnglish: {
		domain.ErrCodeInvalidLicense:          "License key not found. Please check the key and try again.",
		domain.ErrCodeDeviceMismatch:          "This license is already activated on another device.",
		domain.ErrCodeExpired:                 "Your license has expired.",
		domain.ErrCodeSessionExpired:          "Your session has expired. Please sign in again.",
		domain.ErrCodeNetwork:                 "Unable to reach the license server. Check your connection.",
		domain.ErrCodeServerError:             "The license server encountered an error. Please try again later.",
		domain.ErrCodeInvalidSessionStructure: "Saved session data is damaged and was cleared. Please sign in again.",
		domain.ErrCodeNoSession:               "No active session. Please enter your license key.",
		domain.ErrCodeInvalidRequest:          "The request was malformed.",
		domain.ErrCodeNotAuthenticated:        "Please activate a license first.",
	},
	LangArabic: {
		domain.ErrCodeInvalidLicense:          "مفتاح الترخيص غير موجود. يرجى التحقق من المفتاح والمحاولة مرة أخرى.",
		domain.ErrCodeDeviceMismatch:          "هذا الترخيص مفعل بالفعل على جهاز آخر.",
		domain.ErrCodeExpired:                 "انتهت صلاحية الترخيص.",
		domain.ErrCodeSessionExpired:          "انتهت الجلسة. يرجى تسجيل الدخول مرة أخرى.",
		domain.ErrCodeNetwork:                 "تعذر الاتصال بخادم التراخيص. تحقق من الاتصال.",
		domain.ErrCodeServerError:             "حدث خطأ في خادم التراخيص. يرجى المحاولة لاحقا.",
		domain.ErrCodeInvalidSessionStructure: "بيانات الجلسة المحفوظة تالفة وتم مسحها. يرجى تسجيل الدخول مرة أخرى.",
		domain.ErrCodeNoSession:               "لا توجد جلسة نشطة. يرجى إدخال مفتاح الترخيص.",
		domain.ErrCodeInvalidRequest:          "الطلب غير صالح.",
		domain.ErrCodeNotAuthenticated:        "يرجى تفعيل الترخيص أولا.",
	},
}

// Message returns the localized message for a wire code, falling back to English.
func Message(code, lang string) string {
	if table, ok := messages[lang]; ok {
		if msg, ok := table[code]; ok {
			return msg
		}
	}
	if msg, ok := messages[LangEnglish][code]; ok {
		return msg
	}
	return messages[LangEnglish][domain.ErrCodeServerError]
}
