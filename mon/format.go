package mon

// CommaBufSize is large enough for any uint64 with separators:
// 20 digits and 6 commas.
const CommaBufSize = 26

// AddCommas writes value in decimal, with a comma between every group of
// three digits, into the tail of buf. It returns the part of buf holding the
// text, which usually does not start at buf[0].
func AddCommas(buf []byte, value uint64) []byte {
	orig := value
	end := len(buf)
	pos := end
	digits := 0

	for {
		if digits > 0 && digits%3 == 0 {
			if pos == 0 {
				violate("AddCommas", "buffer of %d bytes too small for %d", len(buf), orig)
			}
			pos--
			buf[pos] = ','
		}

		if pos == 0 {
			violate("AddCommas", "buffer of %d bytes too small for %d", len(buf), orig)
		}
		pos--
		buf[pos] = byte('0' + value%10)
		digits++

		value /= 10
		if value == 0 {
			break
		}
	}

	return buf[pos:end]
}

// FormatCount returns value with thousands separators.
func FormatCount(value uint64) string {
	var buf [CommaBufSize]byte
	return string(AddCommas(buf[:], value))
}
