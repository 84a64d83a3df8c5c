package email

import (
	"fmt"
	"html"
	"strings"
)

// formatAmount renders minor units as a decimal amount with the
// uppercased currency code, e.g. 1999 "eur" -> "19.99 EUR".
func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

func welcomeMessage(name, frontendURL string) (subject, htmlBody, text string) {
	subject = "Welcome to the Accord Harmony Foundation"
	htmlBody = fmt.Sprintf(`<h2>Welcome, %s!</h2>
<p>Your account has been created. You can browse our publications and
support our work at any time.</p>
<p><a href="%s">Visit the foundation</a></p>`,
		html.EscapeString(name), frontendURL)
	text = fmt.Sprintf("Welcome, %s!\n\nYour account has been created. Visit us at %s\n", name, frontendURL)
	return
}

func purchaseMessage(info PurchaseInfo, frontendURL string) (subject, htmlBody, text string) {
	link := fmt.Sprintf("%s/download/%s", frontendURL, info.DownloadToken)
	subject = fmt.Sprintf("Your purchase: %s", info.ProductName)
	htmlBody = fmt.Sprintf(`<h2>Thank you for your purchase, %s!</h2>
<p>You bought <strong>%s</strong> for %s.</p>
<p><a href="%s">Download your copy</a></p>
<p>The link is valid for %d hours and allows up to %d downloads.
Your copy is personalized to you.</p>
<p>Transaction reference: %s</p>`,
		html.EscapeString(info.Name), html.EscapeString(info.ProductName),
		formatAmount(info.AmountCents, info.Currency), link,
		info.ExpiresHours, info.MaxDownloads, info.TransactionID)
	text = fmt.Sprintf(
		"Thank you for your purchase, %s!\n\nYou bought %s for %s.\nDownload: %s\nThe link is valid for %d hours and allows up to %d downloads.\nTransaction reference: %s\n",
		info.Name, info.ProductName, formatAmount(info.AmountCents, info.Currency),
		link, info.ExpiresHours, info.MaxDownloads, info.TransactionID)
	return
}

func donationMessage(name string, amountCents int64, currency string) (subject, htmlBody, text string) {
	amount := formatAmount(amountCents, currency)
	subject = "Thank you for your donation"
	htmlBody = fmt.Sprintf(`<h2>Thank you, %s!</h2>
<p>We received your donation of <strong>%s</strong>. Your support
keeps our cultural and educational programs running.</p>`,
		html.EscapeString(name), amount)
	text = fmt.Sprintf("Thank you, %s!\n\nWe received your donation of %s.\n", name, amount)
	return
}

func passwordResetMessage(name, token, frontendURL string) (subject, htmlBody, text string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", frontendURL, token)
	subject = "Reset your password"
	htmlBody = fmt.Sprintf(`<h2>Hello %s,</h2>
<p>A password reset was requested for your account. The link below is
valid for one hour.</p>
<p><a href="%s">Reset password</a></p>
<p>If you did not request this, you can ignore this message.</p>`,
		html.EscapeString(name), link)
	text = fmt.Sprintf(
		"Hello %s,\n\nA password reset was requested for your account. The link is valid for one hour:\n%s\n\nIf you did not request this, ignore this message.\n",
		name, link)
	return
}

// bookDeliveryStrings holds the localized pieces of the direct
// purchase delivery mail. Unknown languages fall back to English.
type bookDeliveryStrings struct {
	subject  string
	greeting string
	body     string
	download string
	validity string
	receipt  string
}

var bookDeliveryLocales = map[string]bookDeliveryStrings{
	"en": {
		subject:  "Your book is ready to download",
		greeting: "Dear %s,",
		body:     "Thank you for your purchase. Your personalized copy is ready.",
		download: "Download your book",
		validity: "The link is valid for %d days and allows up to %d downloads.",
		receipt:  "Receipt number: %s",
	},
	"de": {
		subject:  "Ihr Buch steht zum Download bereit",
		greeting: "Liebe(r) %s,",
		body:     "Vielen Dank für Ihren Kauf. Ihr personalisiertes Exemplar ist bereit.",
		download: "Buch herunterladen",
		validity: "Der Link ist %d Tage gültig und erlaubt bis zu %d Downloads.",
		receipt:  "Belegnummer: %s",
	},
	"fr": {
		subject:  "Votre livre est prêt à être téléchargé",
		greeting: "Cher/Chère %s,",
		body:     "Merci pour votre achat. Votre exemplaire personnalisé est prêt.",
		download: "Télécharger votre livre",
		validity: "Le lien est valable %d jours et permet jusqu'à %d téléchargements.",
		receipt:  "Numéro de reçu : %s",
	},
	"bg": {
		subject:  "Вашата книга е готова за изтегляне",
		greeting: "Уважаеми/а %s,",
		body:     "Благодарим за покупката. Вашето персонализирано копие е готово.",
		download: "Изтеглете книгата",
		validity: "Линкът е валиден %d дни и позволява до %d изтегляния.",
		receipt:  "Номер на касова бележка: %s",
	},
}

func bookDeliveryMessage(info BookDeliveryInfo, frontendURL string) (subject, htmlBody, text string) {
	loc, ok := bookDeliveryLocales[info.Language]
	if !ok {
		loc = bookDeliveryLocales["en"]
	}
	link := fmt.Sprintf("%s/api/download-book/%s", frontendURL, info.DownloadToken)
	greeting := fmt.Sprintf(loc.greeting, html.EscapeString(info.Name))
	validity := fmt.Sprintf(loc.validity, info.ExpiryDays, info.MaxDownloads)
	receipt := fmt.Sprintf(loc.receipt, info.ReceiptNumber)

	subject = loc.subject
	htmlBody = fmt.Sprintf(`<h2>%s</h2>
<p>%s</p>
<p><a href="%s">%s</a></p>
<p>%s</p>
<p>%s</p>`, greeting, loc.body, link, loc.download, validity, receipt)
	text = fmt.Sprintf("%s\n\n%s\n%s: %s\n%s\n%s\n",
		fmt.Sprintf(loc.greeting, info.Name), loc.body, loc.download, link, validity, receipt)
	return
}

func contactMessage(fromName, fromEmail, message string) (subject, htmlBody, text string) {
	subject = fmt.Sprintf("Contact form: %s", fromName)
	htmlBody = fmt.Sprintf(`<h3>New contact form submission</h3>
<p><strong>From:</strong> %s &lt;%s&gt;</p>
<p>%s</p>`,
		html.EscapeString(fromName), html.EscapeString(fromEmail),
		strings.ReplaceAll(html.EscapeString(message), "\n", "<br>"))
	text = fmt.Sprintf("New contact form submission\nFrom: %s <%s>\n\n%s\n", fromName, fromEmail, message)
	return
}
