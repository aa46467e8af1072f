package policy

func privilegeRules() []Rule {
	return []Rule{
		{
			ID:       "privilege-escalation",
			Category: PrivilegeEscalation,
			Verdict:  Block,
			Message:  "privilege escalation is not allowed",
			Match:    executableIn("sudo", "su", "doas", "pkexec"),
			Suggest:  suggest("run the command without elevated privileges, or ask the user to run it"),
		},
	}
}
