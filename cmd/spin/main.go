// cmd/spin/main.go — command line interface for gospin
//
// Examples:
//
//	spin couple 1,0 1,1
//	spin uncouple -j 1 -m 0 --jn 1/2,1/2
//	spin cg 1 0 1 1 2 1
//	spin wignerd -j 1 -m 1 --mp 0 --alpha pi --beta pi/2 --gamma 0
//	spin apply Jz 1 1
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	gospin "github.com/njchilds90/gospin"
)

func main() {
	root := &cobra.Command{
		Use:           "spin",
		Short:         "Exact angular-momentum algebra: coupling, Clebsch-Gordan, Wigner-D",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("basis", "Jz", "eigenbasis (Jx, Jy, Jz)")
	root.PersistentFlags().Bool("latex", false, "print LaTeX instead of plain text")

	root.AddCommand(coupleCmd(), uncoupleCmd(), cgCmd(), wignerdCmd(), applyCmd(), representCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spin:", err)
		os.Exit(1)
	}
}

func printExpr(cmd *cobra.Command, e gospin.Expr) {
	if latex, _ := cmd.Flags().GetBool("latex"); latex {
		fmt.Println(e.LaTeX())
		return
	}
	fmt.Println(e.String())
}

func flagBasis(cmd *cobra.Command) (gospin.Basis, error) {
	name, _ := cmd.Flags().GetString("basis")
	return gospin.ParseBasis(name)
}

func coupleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "couple j1,m1 j2,m2 [j3,m3 ...]",
		Short: "Couple a product of spin states",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			basis, err := flagBasis(cmd)
			if err != nil {
				return err
			}
			states := make([]*gospin.State, len(args))
			for i, arg := range args {
				parts := strings.SplitN(arg, ",", 2)
				if len(parts) != 2 {
					return fmt.Errorf("state %q must be j,m", arg)
				}
				j, err := gospin.ParseRational(parts[0])
				if err != nil {
					return err
				}
				m, err := gospin.ParseRational(parts[1])
				if err != nil {
					return err
				}
				states[i], err = gospin.NewKet(basis, j, m)
				if err != nil {
					return err
				}
			}
			tp, err := gospin.NewTensorProduct(states...)
			if err != nil {
				return err
			}
			result, err := gospin.Couple(tp, nil)
			if err != nil {
				return err
			}
			printExpr(cmd, result)
			return nil
		},
	}
}

func uncoupleCmd() *cobra.Command {
	var jFlag, mFlag, jnFlag string
	cmd := &cobra.Command{
		Use:   "uncouple",
		Short: "Uncouple a coupled spin state into tensor products",
		RunE: func(cmd *cobra.Command, args []string) error {
			basis, err := flagBasis(cmd)
			if err != nil {
				return err
			}
			j, err := gospin.ParseRational(jFlag)
			if err != nil {
				return err
			}
			m, err := gospin.ParseRational(mFlag)
			if err != nil {
				return err
			}
			var jn []gospin.Expr
			for _, part := range strings.Split(jnFlag, ",") {
				v, err := gospin.ParseRational(part)
				if err != nil {
					return err
				}
				jn = append(jn, v)
			}
			st, err := gospin.NewCoupledKet(basis, j, m, jn, nil)
			if err != nil {
				return err
			}
			result, err := gospin.Uncouple(st, nil, nil)
			if err != nil {
				return err
			}
			printExpr(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&jFlag, "j", "", "total j")
	cmd.Flags().StringVar(&mFlag, "m", "", "total m")
	cmd.Flags().StringVar(&jnFlag, "jn", "", "comma-separated space momenta, e.g. 1/2,1/2")
	_ = cmd.MarkFlagRequired("j")
	_ = cmd.MarkFlagRequired("m")
	_ = cmd.MarkFlagRequired("jn")
	return cmd
}

func cgCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cg j1 m1 j2 m2 j3 m3",
		Short: "Evaluate a Clebsch-Gordan coefficient exactly",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals := make([]gospin.Expr, 6)
			for i, arg := range args {
				v, err := gospin.ParseRational(arg)
				if err != nil {
					return err
				}
				vals[i] = v
			}
			result := gospin.NewCG(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]).Doit()
			printExpr(cmd, result)
			return nil
		},
	}
}

func wignerdCmd() *cobra.Command {
	var jFlag, mFlag, mpFlag, alphaFlag, betaFlag, gammaFlag string
	cmd := &cobra.Command{
		Use:   "wignerd",
		Short: "Evaluate a Wigner D-function exactly",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := gospin.ParseRational(jFlag)
			if err != nil {
				return err
			}
			m, err := gospin.ParseRational(mFlag)
			if err != nil {
				return err
			}
			mp, err := gospin.ParseRational(mpFlag)
			if err != nil {
				return err
			}
			angles := make([]gospin.Expr, 3)
			for i, s := range []string{alphaFlag, betaFlag, gammaFlag} {
				a, err := gospin.ParseAngle(s)
				if err != nil {
					return err
				}
				angles[i] = a
			}
			result, err := gospin.NewWignerD(j, m, mp, angles[0], angles[1], angles[2]).Doit()
			if err != nil {
				return err
			}
			printExpr(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&jFlag, "j", "", "j")
	cmd.Flags().StringVar(&mFlag, "m", "", "m")
	cmd.Flags().StringVar(&mpFlag, "mp", "", "m'")
	cmd.Flags().StringVar(&alphaFlag, "alpha", "0", "Euler angle alpha")
	cmd.Flags().StringVar(&betaFlag, "beta", "0", "Euler angle beta")
	cmd.Flags().StringVar(&gammaFlag, "gamma", "0", "Euler angle gamma")
	_ = cmd.MarkFlagRequired("j")
	_ = cmd.MarkFlagRequired("m")
	_ = cmd.MarkFlagRequired("mp")
	return cmd
}

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply op j m",
		Short: "Apply a spin operator to a state",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := gospin.ParseOp(args[0])
			if err != nil {
				return err
			}
			basis, err := flagBasis(cmd)
			if err != nil {
				return err
			}
			j, err := gospin.ParseRational(args[1])
			if err != nil {
				return err
			}
			m, err := gospin.ParseRational(args[2])
			if err != nil {
				return err
			}
			st, err := gospin.NewKet(basis, j, m)
			if err != nil {
				return err
			}
			result, err := gospin.Apply(op, st)
			if err != nil {
				return err
			}
			printExpr(cmd, result)
			return nil
		},
	}
}

func representCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "represent op j",
		Short: "Print the matrix of an operator for a given j",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := gospin.ParseOp(args[0])
			if err != nil {
				return err
			}
			j, err := gospin.ParseRational(args[1])
			if err != nil {
				return err
			}
			matrix, err := gospin.RepresentOp(op, j)
			if err != nil {
				return err
			}
			if latex, _ := cmd.Flags().GetBool("latex"); latex {
				fmt.Println(matrix.LaTeX())
				return nil
			}
			fmt.Println(matrix.String())
			return nil
		},
	}
}
