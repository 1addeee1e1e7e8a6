package config

// DefaultArchiveExclusions returns actions whose events are shown live but
// never written to the archive. Their extras routinely carry message
// bodies, phone numbers, or account data.
func DefaultArchiveExclusions() []string {
	return []string{
		// Telephony & messaging
		"android.provider.Telephony.SMS_RECEIVED",
		"android.provider.Telephony.SMS_DELIVER",
		"android.provider.Telephony.WAP_PUSH_RECEIVED",
		"android.provider.Telephony.WAP_PUSH_DELIVER",
		"android.intent.action.NEW_OUTGOING_CALL",
		"android.intent.action.DATA_SMS_RECEIVED",

		// Accounts
		"android.accounts.LOGIN_ACCOUNTS_CHANGED",
		"android.accounts.action.ACCOUNT_REMOVED",

		// Credentials & keys
		"android.security.action.KEYCHAIN_CHANGED",
		"android.security.action.KEY_ACCESS_CHANGED",
		"android.security.action.TRUST_STORE_CHANGED",
	}
}
