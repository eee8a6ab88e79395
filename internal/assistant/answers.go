package assistant

// cannedAnswers stand in for retrieval-augmented generation output.
var cannedAnswers = []string{
	`Based on the loan documentation requirements, here are the key eligibility criteria:

• **Minimum Credit Score**: 650 or higher for conventional loans
• **Debt-to-Income Ratio**: Should not exceed 43% of gross monthly income
• **Employment History**: Stable employment for at least 2 years
• **Down Payment**: Minimum 3.5% for FHA loans, 5-20% for conventional loans

**Required Documentation**:
• Recent pay stubs (last 2 months)
• Tax returns (last 2 years)
• Bank statements (last 3 months)
• Employment verification letter
• Credit report authorization

For pre-approval, ensure all documentation is current and accurately reflects your financial situation.`,

	`Loan processing typically follows these stages:

**1. Application & Pre-qualification**
• Submit initial application with basic financial information
• Receive pre-qualification letter within 1-3 business days

**2. Document Collection & Verification**
• Provide required documentation (typically takes 3-7 days)
• Underwriter reviews and verifies all information

**3. Property Appraisal & Final Approval**
• Property appraisal ordered (7-10 business days)
• Final underwriting decision within 2-5 business days

**4. Closing Process**
• Schedule closing appointment
• Final walkthrough and document signing

Total timeline: 30-45 days for most conventional loans.`,

	`Interest rates and loan terms vary based on several factors:

**Current Rate Environment**:
• Conventional loans: 6.5% - 8.5% APR
• FHA loans: 6.0% - 8.0% APR
• VA loans: 6.0% - 7.5% APR
• Jumbo loans: 7.0% - 9.0% APR

**Factors Affecting Your Rate**:
• Credit score (higher score = lower rate)
• Down payment amount (more down = better rate)
• Loan-to-value ratio
• Debt-to-income ratio
• Loan term (15-year vs 30-year)

**Rate Lock Options**:
• 30-day lock: No cost
• 60-day lock: 0.125% of loan amount
• 90-day lock: 0.25% of loan amount

Contact your loan officer for current rates specific to your situation.`,
}
