package dialogue

import (
	"fmt"
	"strings"

	"voicepay/internal/domain"
)

const (
	msgSessionExpired     = "Your session has expired for security. Please start fresh."
	msgSnapshotExpired    = "Your payment details have expired for security. Please start the payment again."
	msgMissingAmount      = "I didn't catch the amount. Please tell me how much you'd like to pay."
	msgMissingRecipient   = "I need the recipient's UPI ID. Please provide the UPI ID for the payment."
	msgNoPending          = "There's no pending transaction to confirm. Please start a new payment."
	msgDenied             = "Transaction cancelled. Is there anything else I can help you with?"
	msgCancelled          = "Transaction cancelled. How else may I assist you today?"
	msgBalanceNoApps      = "To check your balance, you'll need to install a UPI app like PhonePe, Google Pay, or Paytm. Would you like help installing one?"
	msgNoAppsInstalled    = "You don't have any UPI apps installed. I recommend installing PhonePe, Google Pay, or Paytm to make payments."
	msgDiscoveryFailed    = "I couldn't check your payment apps right now. Please make sure your phone is connected and try again."
	msgUnknown            = "I'm not sure I understood that. I can help with UPI payments, balance checks, and app management. Say 'help' for more options."
	msgPaymentNoAmount    = "Payment failed: Missing amount"
	msgPaymentNoRecipient = "Payment failed: Missing UPI ID"
	msgPaymentNoApps      = "No UPI apps found. Please install PhonePe, Google Pay, or another UPI app to make payments."
	msgPaymentFailed      = "Payment initiation failed. Please try again or check your UPI app."
	msgInternalError      = "I apologize, but I encountered an error processing your request. Please try again."

	defaultDescription = "VoicePay Transaction"
)

var greetings = []string{
	"Good day! I'm your VoicePay butler, ready to assist with your UPI payments.",
	"Hello there! How may I help you with your payments today?",
	"Greetings! I'm here to make your UPI transactions simple and secure.",
}

var helpText = strings.Join([]string{
	"I can help you with UPI payments! Here's what you can say:",
	"",
	`• "Pay 500 rupees to john@paytm" - Make a payment`,
	`• "Send 1000 to 9876543210@ybl" - Transfer money`,
	`• "Check my balance" - Balance inquiry`,
	`• "What UPI apps do I have" - Check installed apps`,
	`• "Cancel" - Cancel current transaction`,
	"",
	"I'm designed to be secure and user-friendly for all ages.",
}, "\n")

func ceilingMessage(max domain.Amount) string {
	return fmt.Sprintf("I'm afraid I cannot process payments over ₹%s for security reasons. Please contact your bank for larger transactions.", max)
}

func confirmationMessage(amount domain.Amount, recipient, description, suggestion string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I'll send ₹%s to %s", amount, recipient)
	if strings.TrimSpace(description) != "" {
		fmt.Fprintf(&b, " for %s", description)
	}
	b.WriteString(".")
	if suggestion != "" {
		fmt.Fprintf(&b, " Did you mean %s? If so, say 'no' and repeat the payment.", suggestion)
	}
	b.WriteString(" Shall I proceed with this payment? Say 'yes' to confirm or 'no' to cancel.")
	return b.String()
}

func balanceMessage(app domain.PaymentApp) string {
	return fmt.Sprintf("I can help you check your balance. Please open your preferred UPI app to view your account balance. Would you like me to open %s for you?", app.DisplayName)
}

func appListMessage(apps []domain.PaymentApp) string {
	names := make([]string, 0, len(apps))
	for _, app := range apps {
		names = append(names, app.DisplayName)
	}
	return fmt.Sprintf("You have these UPI apps installed: %s. All are ready for payments!", strings.Join(names, ", "))
}

func paymentStartedMessage(amount domain.Amount, app domain.PaymentApp) string {
	return fmt.Sprintf("Payment of ₹%s initiated through %s. Please complete the transaction in the app.", amount, app.DisplayName)
}
