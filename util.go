package bgen

import (
	"math"
	"math/bits"
)

// Choose k from n items can be done in this many ways. Originally derived from
// github.com/limix/bgen /src/util/choose.c. Choose returns -1 if the answer
// does not fit in an int.
func Choose(n, k int) int {
	if k < 0 || n < 0 || k > n {
		return 0
	}

	if n == 3 && k == 1 {
		// Fastest path, since this is the usual result
		return 3
	} else if k == 1 {
		return n
	}

	ans := 1

	if k > n-k {
		k = n - k
	}

	for j := 1; j <= k; j++ {
		// ans is C(n0, j-1) and n is n0-j+1 here, so ans*n is divisible by
		// j. The product may exceed 64 bits even when the quotient does not.
		hi, lo := bits.Mul64(uint64(ans), uint64(n))
		if hi >= uint64(j) {
			return -1
		}
		q, _ := bits.Div64(hi, lo, uint64(j))
		if q > math.MaxInt {
			return -1
		}
		ans = int(q)

		n--
	}

	return ans
}

// genotypeCount is the number of unordered genotypes a sample of the given
// ploidy can carry when a variant has nAlleles alleles.
func genotypeCount(ploidy, nAlleles int) int {
	if nAlleles == 0 {
		return 0
	}
	return Choose(ploidy+nAlleles-1, nAlleles-1)
}
