package match

import "strings"

// OwnerVariants expands a recorded owner name into the forms a county
// parcel roll is likely to carry. Input may be "FIRST [M] LAST" or
// "LAST, FIRST [M]"; output is normalized and deduplicated, most
// specific first.
func OwnerVariants(name string) []string {
	full := Normalize(name)
	if full == "" {
		return nil
	}

	var first, middle, last string
	if i := strings.Index(full, ","); i >= 0 {
		last = strings.TrimSpace(full[:i])
		rest := strings.Fields(full[i+1:])
		if len(rest) > 0 {
			first = rest[0]
		}
		if len(rest) > 1 {
			middle = rest[1]
		}
	} else {
		parts := strings.Fields(full)
		switch len(parts) {
		case 1:
			last = parts[0]
		case 2:
			first, last = parts[0], parts[1]
		default:
			first = parts[0]
			middle = strings.Join(parts[1:len(parts)-1], " ")
			last = parts[len(parts)-1]
		}
	}

	var variants []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		for _, seen := range variants {
			if seen == v {
				return
			}
		}
		variants = append(variants, v)
	}

	add(full)
	if first != "" && last != "" {
		if middle != "" {
			add(first + " " + middle + " " + last)
			add(last + ", " + first + " " + middle)
		}
		add(first + " " + last)
		add(last + " " + first)
		add(last + ", " + first)
	}
	add(last)
	add(first)
	return variants
}

// LastName extracts the normalized surname from an owner name.
func LastName(name string) string {
	full := Normalize(name)
	if full == "" {
		return ""
	}
	if i := strings.Index(full, ","); i >= 0 {
		return strings.TrimSpace(full[:i])
	}
	parts := strings.Fields(full)
	return parts[len(parts)-1]
}
