package bcf

// Choose k from n items can be done in this many ways. Originally derived from
// github.com/limix/bgen /src/util/choose.c
func Choose(n, k int) int {
	if k < 0 || k > n {
		return 0
	} else if k == 1 {
		return n
	}

	ans := 1

	if k > n-k {
		k = n - k
	}

	for j := 1; j <= k; j++ {
		if n%j == 0 {
			ans *= n / j
		} else if ans%j == 0 {
			ans = ans / j * n
		} else {
			ans = (ans * n) / j
		}

		n--
	}

	return ans
}

// NGenotypes is the number of unordered genotypes a sample of the given
// ploidy can carry at a site with nAlleles alleles. For diploids this is
// nAlleles*(nAlleles+1)/2, the length of a Number=G sub-array.
func NGenotypes(nAlleles, ploidy int) int {
	if nAlleles <= 0 || ploidy <= 0 {
		return 0
	}
	return Choose(nAlleles+ploidy-1, ploidy)
}
