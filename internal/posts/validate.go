package posts

// validateRequiredFields checks a full create payload and reports every
// failing field, not just the first
func validateRequiredFields(title, content, category string) []string {
	var errs []string
	if title == "" {
		errs = append(errs, "title is required")
	} else if len(title) > maxTitleLength {
		errs = append(errs, "title max 100 chars")
	}
	if content == "" {
		errs = append(errs, "content is required")
	}
	if category == "" {
		errs = append(errs, "category is required")
	}
	return errs
}

// validateSuppliedFields checks only the fields present in a partial
// update payload
func validateSuppliedFields(title, content *string) []string {
	var errs []string
	if title != nil {
		if *title == "" {
			errs = append(errs, "title is required")
		} else if len(*title) > maxTitleLength {
			errs = append(errs, "title max 100 chars")
		}
	}
	if content != nil && *content == "" {
		errs = append(errs, "content is required")
	}
	return errs
}
